// Package geometry owns the shared data model of the reconstruction
// pipeline: points, oriented points, point clouds, triangle meshes and
// axis-aligned bounding boxes, plus the error kinds every stage reports.
//
// Dependency rule: geometry depends on nothing else in this module. Every
// stage package (spatial, normals, poisson, cleanup, lod) imports it and
// hands fully owned values to the next stage.
package geometry
