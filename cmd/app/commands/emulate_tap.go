package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/allisson/boltgate/internal/boltcard/service"
)

// RunEmulateTap prints the tap URL a card programmed with k1 and k2 would produce for the
// given UID and counter. lnurlwBase is the lnurlw_base from the programming payload.
func RunEmulateTap(writer io.Writer, lnurlwBase, k1Hex, k2Hex, uidHex string, counter uint32) error {
	k1, err := decodeKey("k1", k1Hex)
	if err != nil {
		return err
	}
	k2, err := decodeKey("k2", k2Hex)
	if err != nil {
		return err
	}
	uid, err := hex.DecodeString(strings.TrimSpace(uidHex))
	if err != nil {
		return fmt.Errorf("invalid uid: %w", err)
	}

	p, c, err := service.EncodeTap(k1, k2, uid, counter)
	if err != nil {
		return fmt.Errorf("failed to encode tap: %w", err)
	}

	base := strings.Replace(lnurlwBase, "lnurlw://", "https://", 1)
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid lnurlw base: %w", err)
	}
	u.RawQuery = url.Values{"p": {p}, "c": {c}}.Encode()

	_, _ = fmt.Fprintln(writer, u.String())
	return nil
}

func decodeKey(name, value string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil || len(key) != 16 {
		return nil, fmt.Errorf("%s must be 32 hex characters", name)
	}
	return key, nil
}
