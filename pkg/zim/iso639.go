package zim

// iso6393to1 maps the ISO 639-3 language codes found in ZIM "language"
// metadata to their ISO 639-1 equivalent.
var iso6393to1 = map[string]string{
	"ara": "ar", "dan": "da", "nld": "nl", "eng": "en",
	"fin": "fi", "fra": "fr", "deu": "de", "hun": "hu",
	"ita": "it", "nor": "no", "por": "pt", "ron": "ro",
	"rus": "ru", "spa": "es", "swe": "sv", "tur": "tr",
}

// ISO639_1 looks up the ISO 639-1 form of a 639-3 code. ok is false for any
// code outside the small set ZIM archives commonly carry, in which case
// callers fall back to "en".
func ISO639_1(code string) (string, bool) {
	v, ok := iso6393to1[code]
	return v, ok
}
