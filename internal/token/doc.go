// Package token defines the parsed unit of text that flows through the
// substitution pipeline.
//
// This package contains the Token type, its parsing and formatting rules,
// and the Index type. All other internal packages import token; token
// imports nothing internal.
//
// Key design constraints:
//   - Index is the single ordinal used for ordering and resume. The
//     tokenizer's Skip, the scheduler's window and the reconciler's resume
//     offset all speak Index, never line numbers or byte positions.
//   - A Token is immutable once parsed except for its completion slot,
//     which settles exactly once.
//   - Formatting is pure: the same token and replacement always render the
//     same bytes.
package token
