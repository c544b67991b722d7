package voice

import "strings"

// SpeechSettings are applied to every utterance.
type SpeechSettings struct {
	Rate   float64
	Pitch  float64
	Volume float64
	Lang   string
}

func DefaultSpeechSettings() SpeechSettings {
	return SpeechSettings{Rate: 0.7, Pitch: 1.2, Volume: 0.9, Lang: "en-IN"}
}

func DefaultRecognitionOptions() RecognitionOptions {
	return RecognitionOptions{
		Language:        "en-IN",
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: 3,
		SampleRate:      16000,
	}
}

var naturalVoiceNames = []string{"Samantha", "Karen", "Susan", "Zira"}

// SelectVoice picks an English voice: an explicitly female one first, then a
// known natural voice, then any Google or Microsoft voice. It returns nil when
// nothing qualifies and the engine default should be used.
func SelectVoice(voices []Voice) *Voice {
	tiers := []func(Voice) bool{
		func(v Voice) bool {
			return strings.Contains(strings.ToLower(v.Name), "female")
		},
		func(v Voice) bool {
			for _, name := range naturalVoiceNames {
				if strings.Contains(v.Name, name) {
					return true
				}
			}
			return strings.Contains(v.Name, "Google") && strings.Contains(v.Name, "Female")
		},
		func(v Voice) bool {
			return strings.Contains(v.Name, "Google") || strings.Contains(v.Name, "Microsoft")
		},
	}
	for _, match := range tiers {
		for i := range voices {
			if strings.Contains(voices[i].Lang, "en") && match(voices[i]) {
				v := voices[i]
				return &v
			}
		}
	}
	return nil
}
