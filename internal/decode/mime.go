package decode

import "bytes"

// MIME canonical names used throughout the decoder and the slot policy table.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
	MIMEJXL  = "image/jxl"
	MIMEPDF  = "application/pdf"
)

// slotPolicy is the MIME allow-list per artifact slot.
var slotPolicy = map[Slot][]string{
	SlotPastorLetter:       {MIMEJPEG, MIMEPNG, MIMEGIF, MIMEWebP, MIMEJXL, MIMEPDF},
	SlotPaymentReceipt:     {MIMEJPEG, MIMEPNG, MIMEGIF, MIMEWebP, MIMEJXL, MIMEPDF},
	SlotGroupPhoto:         {MIMEJPEG, MIMEPNG},
	SlotPlayerAadhar:       {MIMEPDF},
	SlotPlayerSubscription: {MIMEPDF},
}

func allowedForSlot(slot Slot, mime string) bool {
	for _, m := range slotPolicy[slot] {
		if m == mime {
			return true
		}
	}
	return false
}

// detectMIME sniffs a canonical MIME type from magic bytes. The stdlib
// sniffer (net/http.DetectContentType) doesn't distinguish JXL from generic
// octet-streams and is looser than the exact gif/webp/jpeg signatures this
// allow-list checks against, so the table is hand-rolled instead.
func detectMIME(data []byte) (string, bool) {
	switch {
	case hasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return MIMEJPEG, true
	case hasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return MIMEPNG, true
	case hasPrefix(data, []byte("GIF87a")) || hasPrefix(data, []byte("GIF89a")):
		return MIMEGIF, true
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return MIMEWebP, true
	case hasPrefix(data, []byte{0xFF, 0x0A}):
		return MIMEJXL, true
	case len(data) >= 12 && bytes.Equal(data[4:12], []byte{0x4A, 0x58, 0x4C, 0x20, 0x0D, 0x0A, 0x87, 0x0A}):
		return MIMEJXL, true
	case hasPrefix(data, []byte("%PDF-")):
		return MIMEPDF, true
	default:
		return "", false
	}
}

func hasPrefix(data, prefix []byte) bool {
	return len(data) >= len(prefix) && bytes.Equal(data[:len(prefix)], prefix)
}

// mimeAliases maps declared-header spellings onto the canonical names above.
var mimeAliases = map[string]string{
	"image/jpg":  MIMEJPEG,
	"image/jpeg": MIMEJPEG,
	"image/png":  MIMEPNG,
	"image/gif":  MIMEGIF,
	"image/webp": MIMEWebP,
	"image/jxl":  MIMEJXL,
	"application/pdf": MIMEPDF,
}

func canonicalMIME(declared string) (string, bool) {
	m, ok := mimeAliases[declared]
	return m, ok
}
