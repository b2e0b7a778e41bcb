package scesim

import (
	"cmp"
	"fmt"
	"io"

	"github.com/jacoelho/scesim/errors"
)

const defaultMaxInputSize = 64 << 20

func resolveMaxInputSize(value int) (int, error) {
	if value < 0 {
		return 0, fmt.Errorf("max input size must be >= 0")
	}
	return cmp.Or(value, defaultMaxInputSize), nil
}

func checkInputSize(size, limit int) error {
	if size > limit {
		return errors.Newf(errors.ErrInputTooLarge, "document is %d bytes, limit is %d", size, limit)
	}
	return nil
}

// readLimited reads r fully, failing once more than limit bytes arrive.
func readLimited(r io.Reader, limit int) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if len(data) > limit {
		return "", errors.Newf(errors.ErrInputTooLarge, "document exceeds %d bytes", limit)
	}
	return string(data), nil
}
