package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

var (
	// ErrWrongAccountType means the leading tag is not the requested kind.
	ErrWrongAccountType = errors.New("wrong account type")
	// ErrCorruptRecord means the bytes are truncated or malformed.
	ErrCorruptRecord = errors.New("corrupt record")
)

// reader is a bounds-checked cursor over an account buffer.
type reader struct {
	buf []byte
	off int
}

func (r *reader) done() bool { return r.off >= len(r.buf) }

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrCorruptRecord, field, n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) pubkey(field string) (model.Pubkey, error) {
	var pk model.Pubkey
	b, err := r.take(model.PubkeySize, field)
	if err != nil {
		return pk, err
	}
	copy(pk[:], b)
	return pk, nil
}

func (r *reader) u8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64(field string) (int64, error) {
	v, err := r.u64(field)
	return int64(v), err
}

func (r *reader) boolean(field string) (bool, error) {
	v, err := r.u8(field)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %s has bool byte %d", ErrCorruptRecord, field, v)
}

// present reads an option tag.
func (r *reader) present(field string) (bool, error) {
	v, err := r.u8(field)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %s has option tag %d", ErrCorruptRecord, field, v)
}

func (r *reader) text(field string, max int) (string, error) {
	n, err := r.u32(field)
	if err != nil {
		return "", err
	}
	if int64(n) > int64(max) {
		return "", fmt.Errorf("%w: %s length %d exceeds %d", ErrCorruptRecord, field, n, max)
	}
	b, err := r.take(int(n), field)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrCorruptRecord, field)
	}
	return string(b), nil
}

func (r *reader) optU64(field string) (*uint64, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	v, err := r.u64(field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *reader) optI64(field string) (*int64, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	v, err := r.i64(field)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *reader) optText(field string, max int) (*string, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	s, err := r.text(field, max)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// writer appends little-endian fields to a growing buffer.
type writer struct {
	buf []byte
}

func (w *writer) raw(b []byte)           { w.buf = append(w.buf, b...) }
func (w *writer) pubkey(pk model.Pubkey) { w.buf = append(w.buf, pk[:]...) }
func (w *writer) u8(v uint8)             { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32)           { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64)           { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i64(v int64)            { w.u64(uint64(v)) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) text(field, s string, max int) error {
	if len(s) > max {
		return fmt.Errorf("%w: %s is %d bytes, max %d", model.ErrTextTooLong, field, len(s), max)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", model.ErrInvalidInput, field)
	}
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *writer) optU64(v *uint64) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.u64(*v)
}

func (w *writer) optI64(v *int64) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.i64(*v)
}

func (w *writer) optText(field string, v *string, max int) error {
	if v == nil {
		w.u8(0)
		return nil
	}
	w.u8(1)
	return w.text(field, *v, max)
}
