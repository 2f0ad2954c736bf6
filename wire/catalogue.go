// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

// Catalogue holds the fixed set of wire formats, keyed by tag. It is
// built once and never mutated afterward.
type Catalogue struct {
	formats map[Tag]Format
}

// NewCatalogue builds the standard eight-format catalogue (PACK, CHCK,
// CHRP, HELO, BYEX, SIRQ, SIAN, CACC), built from three payload shapes:
// packet-bearing (PACK, SIAN), fixed-int (CHCK, CHRP), and empty (HELO,
// BYEX, SIRQ, CACC). Packet type tags resolve through reg.
func NewCatalogue(reg *Registry) *Catalogue {
	formats := []Format{
		NewPacketFormat(TagPack, "PACK", reg),
		NewFixedIntFormat(TagChck, "CHCK"),
		NewFixedIntFormat(TagChrp, "CHRP"),
		NewEmptyFormat(TagHelo, "HELO"),
		NewEmptyFormat(TagBYEX, "BYEX"),
		NewEmptyFormat(TagSirq, "SIRQ"),
		NewPacketFormat(TagSian, "SIAN", reg),
		NewEmptyFormat(TagCacc, "CACC"),
	}
	c := &Catalogue{formats: make(map[Tag]Format, len(formats))}
	for _, f := range formats {
		c.formats[f.Tag()] = f
	}
	return c
}

// Lookup resolves a tag to its Format.
func (c *Catalogue) Lookup(tag Tag) (Format, bool) {
	f, ok := c.formats[tag]
	return f, ok
}
