// Package descriptor defines the typed records stored in a library
// directory's descriptor file and the overlay merge applied to them.
//
// A descriptor file is a JSON object with one member per metadata provider.
// The "themoviedb.org" member decodes into Descriptor, whose series, season,
// episode, and image-set records each expose a fixed set of typed fields plus
// an Extra map holding every other key verbatim. Encoding is canonical
// (sorted keys, two-space indent, no HTML escaping) so an unchanged tree
// always serializes to the same bytes.
//
// Merging a remote payload into a record is a non-destructive overlay: keys
// present in the payload replace the stored value, keys absent from it are
// left alone. Optional fields that end up empty are omitted on encode.
package descriptor
