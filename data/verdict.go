package data

// Action is what the filter does with a request
type Action int

const (
	// PassThrough hands the request to the protected application
	PassThrough Action = iota
	// ShowPixel answers with a transparent 1x1 image
	ShowPixel
	// ShowInterstitial answers with the countdown page leading to Verdict.Destination
	ShowInterstitial
)

func (a Action) String() string {
	switch a {
	case ShowPixel:
		return "pixel"
	case ShowInterstitial:
		return "interstitial"
	default:
		return "pass"
	}
}

// Reasons set by the filter itself rather than by a rule
const (
	ReasonVerified        = "verified"
	ReasonTrap            = "trap"
	ReasonTrapWriteFailed = "trap-write-failed"
	ReasonPixelTrap       = "pixel-trap"
	ReasonMalformedRoute  = "malformed-route"
)

// Verdict is the outcome of classifying one request
type Verdict struct {
	Action      Action `json:"action"`
	Destination string `json:"destination,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Pass returns a PassThrough verdict
func Pass(reason string) Verdict {
	return Verdict{Action: PassThrough, Reason: reason}
}

// Pixel returns a ShowPixel verdict
func Pixel(reason string) Verdict {
	return Verdict{Action: ShowPixel, Reason: reason}
}

// Interstitial returns a ShowInterstitial verdict leading to destination
func Interstitial(destination, reason string) Verdict {
	return Verdict{Action: ShowInterstitial, Destination: destination, Reason: reason}
}

// IsBot reports whether the verdict keeps the request away from the application
func (v Verdict) IsBot() bool {
	return v.Action != PassThrough
}
