//go:build !windows

package winapi

func New() (Platform, error) {
	return nil, ErrUnsupported
}
