package asr

import "fmt"

// Reason names the stage of the model call that failed.
type Reason string

const (
	ReasonSpectrogram    Reason = "spectrogram"
	ReasonLanguageDetect Reason = "language auto-detect"
	ReasonAudioCtx       Reason = "audio_ctx too large"
	ReasonEncode         Reason = "encode"
	ReasonDecode         Reason = "decode"
	ReasonUnknown        Reason = "unknown"
)

// Error is a failed inference call. It ends a streaming session.
type Error struct {
	Reason Reason
	Code   int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transcription failed: %s", e.Reason)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// FromCode maps a whisper_full return code to an Error; 0 yields nil.
func FromCode(code int) *Error {
	var r Reason
	switch code {
	case 0:
		return nil
	case -1, -2:
		r = ReasonSpectrogram
	case -3:
		r = ReasonLanguageDetect
	case -5:
		r = ReasonAudioCtx
	case -6:
		r = ReasonEncode
	case -7, -8:
		r = ReasonDecode
	default:
		r = ReasonUnknown
	}
	return &Error{Reason: r, Code: code}
}
