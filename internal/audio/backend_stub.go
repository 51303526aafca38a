//go:build !whisper

package audio

func newPortAudioBackend() (Backend, error) { return nil, ErrNativeUnavailable }

func newMiniaudioBackend() (Backend, error) { return nil, ErrNativeUnavailable }
