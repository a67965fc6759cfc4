// Package textutil provides the text cleanup used by record normalization:
// whitespace collapse, name casing, US phone and currency formatting, fuzzy
// matching of record keys, and filesystem-safe name sanitizing.
//
// Key matching uses token-frequency vectors compared by cosine similarity, so
// "Owner Name", "owner_name" and "NAME OF OWNER" all resolve to the same
// configured field.
package textutil
