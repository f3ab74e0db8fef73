//go:build !windows && !linux

package input

func openKeyDevice() (keyDevice, error) {
	return nil, ErrUnsupported
}
