package converter

import "strconv"

// writtenAccidentals maps MusicXML <accidental> values to MEI @accid.
var writtenAccidentals = map[string]string{
	"sharp":                "s",
	"natural":              "n",
	"flat":                 "f",
	"double-sharp":         "x",
	"sharp-sharp":          "x",
	"flat-flat":            "ff",
	"natural-sharp":        "ns",
	"natural-flat":         "nf",
	"triple-sharp":         "ts",
	"triple-flat":          "tf",
	"quarter-flat":         "nd",
	"quarter-sharp":        "nu",
	"three-quarters-flat":  "fd",
	"three-quarters-sharp": "su",
}

// gesturalAccidentals maps <alter> in semitones to MEI @accid.ges.
var gesturalAccidentals = map[float64]string{
	-3:   "tf",
	-2.5: "ffd",
	-2:   "ff",
	-1.5: "fd",
	-1:   "f",
	-0.5: "fu",
	0:    "n",
	0.5:  "sd",
	1:    "s",
	1.5:  "su",
	2:    "ss",
	2.5:  "xu",
	3:    "ts",
}

// articulations maps <articulations> children to MEI @artic tokens.
// Some MusicXML marks combine two MEI tokens.
var articulations = map[string][]string{
	"accent":          {"acc"},
	"strong-accent":   {"marc"},
	"staccato":        {"stacc"},
	"tenuto":          {"ten"},
	"detached-legato": {"ten", "stacc"},
	"staccatissimo":   {"stacciss"},
	"spiccato":        {"spicc"},
	"scoop":           {"scoop"},
	"plop":            {"plop"},
	"doit":            {"doit"},
	"falloff":         {"fall"},
	"stress":          {"stress"},
	"unstress":        {"unstress"},
	"soft-accent":     {"acc-soft"},
}

// technicalMarks maps <technical> children to MEI @artic tokens.
var technicalMarks = map[string]string{
	"up-bow":         "upbow",
	"down-bow":       "dnbow",
	"harmonic":       "harm",
	"open-string":    "open",
	"stopped":        "stop",
	"snap-pizzicato": "snap",
	"double-tongue":  "dbltongue",
	"triple-tongue":  "trpltongue",
	"tap":            "tap",
	"heel":           "heel",
	"toe":            "toe",
	"fingernails":    "fingernail",
	"open":           "open",
	"half-muted":     "damp",
}

// ornamentKind is the MEI control element produced for an ornament.
type ornamentKind struct {
	Element string // trill, mordent or turn
	Form    string
}

var ornaments = map[string]ornamentKind{
	"trill-mark":       {Element: "trill"},
	"mordent":          {Element: "mordent", Form: "lower"},
	"inverted-mordent": {Element: "mordent", Form: "upper"},
	"turn":             {Element: "turn", Form: "upper"},
	"inverted-turn":    {Element: "turn", Form: "lower"},
	"delayed-turn":     {Element: "turn", Form: "upper"},
}

var fermataShapes = map[string]string{
	"":        "curved",
	"normal":  "curved",
	"angled":  "angular",
	"square":  "square",
	"upright": "curved",
}

// dynamicMarks lists the MusicXML dynamics elements rendered as <dynam> text.
var dynamicMarks = map[string]bool{
	"p": true, "pp": true, "ppp": true, "pppp": true, "ppppp": true, "pppppp": true,
	"f": true, "ff": true, "fff": true, "ffff": true, "fffff": true, "ffffff": true,
	"mp": true, "mf": true, "sf": true, "sfp": true, "sfpp": true, "fp": true,
	"rf": true, "rfz": true, "sfz": true, "sffz": true, "fz": true, "n": true,
	"pf": true, "sfzp": true,
}

var wordPositions = map[string]string{
	"begin":  "i",
	"middle": "m",
	"end":    "t",
}

var stemDirections = map[string]string{
	"up":   "up",
	"down": "down",
}

func formatAlter(alter float64) string {
	return strconv.FormatFloat(alter, 'f', -1, 64)
}
