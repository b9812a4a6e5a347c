//go:build !linux || !(arm || arm64)

package hal

func openEmbd(Config) (*Hardware, error) {
	return nil, ErrUnsupported
}
