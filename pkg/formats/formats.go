// Package formats decodes the assets stored inside Might and Magic VI-VIII
// LOD archives: palettes, bitmaps, sprites, the tile, decoration and sprite
// frame tables, outdoor maps with their BSP models and billboards.
//
// Parsers take the bytes of a single entry. Loaders take an AssetSource,
// usually a *lod.Set, resolve the well-known entry path and strip its
// compression framing before parsing.
package formats
