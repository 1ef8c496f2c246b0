package errors

import "nascdec/pkg/source"

// Position locates an error inside a listing.
type Position struct {
	Line   int                // 1-based listing line (0 when unknown)
	Class  string             // Class being decompiled, if any
	Source *source.SourceFile // Listing the line belongs to
}
