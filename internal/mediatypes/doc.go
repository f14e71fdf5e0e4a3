// Package mediatypes provides shared type definitions and lookup tables for
// media file handling across the catalog service.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no external dependencies beyond
// the standard library.
//
// # Support gate
//
// Ingestion accepts files by MIME type, not extension list, so the single
// source of truth is SupportedMimeTypes. Use IsSupported to gate a path:
//
//	if !mediatypes.IsSupported(path) {
//	    // skip silently
//	}
//
// # Extension detection
//
// Use TypeOf to classify a path:
//
//	switch mediatypes.TypeOf(path) {
//	case mediatypes.FileTypeImage:
//	    // decode directly
//	case mediatypes.FileTypeVideo:
//	    // probe via ffmpeg
//	}
package mediatypes
