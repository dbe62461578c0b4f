package converter

// MaxDots bounds augmentation dots added by inference.
const MaxDots = 3

// noteType is a power-of-two note value. Exp is log2 of its length in
// quarter notes: whole is 2, eighth is -1.
type noteType struct {
	MusicXML string
	MEI      string
	Exp      int
}

// noteTypes runs longest first; inference relies on that order.
var noteTypes = []noteType{
	{"maxima", "maxima", 5},
	{"long", "long", 4},
	{"breve", "breve", 3},
	{"whole", "1", 2},
	{"half", "2", 1},
	{"quarter", "4", 0},
	{"eighth", "8", -1},
	{"16th", "16", -2},
	{"32nd", "32", -3},
	{"64th", "64", -4},
	{"128th", "128", -5},
	{"256th", "256", -6},
	{"512th", "512", -7},
	{"1024th", "1024", -8},
}

// scaleShift makes every base value and every dot increment an integer:
// the shortest type is 2^-8 quarters and its third dot adds 2^-3 of that.
const scaleShift = 11

// Inference is the written value chosen for a tick duration.
type Inference struct {
	Dur         string // MEI @dur value
	Dots        int
	Approximate bool
}

// meiDur maps a MusicXML <type> value to MEI @dur.
func meiDur(musicXMLType string) (string, bool) {
	for _, t := range noteTypes {
		if t.MusicXML == musicXMLType {
			return t.MEI, true
		}
	}
	return "", false
}

// InferDuration chooses the largest type not longer than ticks/divisions and
// adds greedy dots, each worth half the previous increment. If ticks cannot
// be expressed exactly, the bare base type is returned with Approximate set.
// Values shorter than a 1024th snap to a 1024th, also approximate.
// It reports false when ticks or divisions are not positive.
func InferDuration(ticks, divisions int) (Inference, bool) {
	if ticks <= 0 || divisions <= 0 {
		return Inference{}, false
	}

	scaled := int64(ticks) << scaleShift
	shortest := noteTypes[len(noteTypes)-1]

	for _, t := range noteTypes {
		base := baseValue(divisions, t.Exp)
		if base > scaled {
			continue
		}

		rem := scaled - base
		inc := base / 2
		dots := 0
		for dots < MaxDots && rem > 0 && inc > 0 && inc <= rem {
			rem -= inc
			inc /= 2
			dots++
		}
		if rem != 0 {
			return Inference{Dur: t.MEI, Approximate: true}, true
		}
		return Inference{Dur: t.MEI, Dots: dots}, true
	}

	return Inference{Dur: shortest.MEI, Approximate: true}, true
}

// baseValue is the scaled tick length of a type with exponent exp.
func baseValue(divisions, exp int) int64 {
	return int64(divisions) << (scaleShift + exp)
}
