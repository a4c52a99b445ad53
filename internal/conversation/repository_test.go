package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingRows struct {
	scanErr error
	iterErr error
}

func (r *failingRows) Next() bool {
	return r.scanErr != nil
}

func (r *failingRows) Scan(dest ...any) error {
	err := r.scanErr
	r.scanErr = nil
	return err
}

func (r *failingRows) Err() error {
	return r.iterErr
}

func TestScanMessagesWrapsStorageErr(t *testing.T) {
	_, err := scanMessages(&failingRows{scanErr: errors.New("bad row")})
	assert.ErrorIs(t, err, ErrStorage)

	_, err = scanMessages(&failingRows{iterErr: errors.New("connection reset")})
	assert.ErrorIs(t, err, ErrStorage)
}
