package service

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/aead/cmac"

	"github.com/allisson/boltgate/internal/boltcard/domain"
)

// NTAG 424 DNA SUN parameters (NXP AN12196).
const (
	piccDataHexLen = 32
	sunMACHexLen   = 16
	piccDataTag    = 0xC7
	uidLen         = 7
	counterLen     = 3
)

// sv2Prefix is the fixed head of the session vector used to derive the SDM MAC key.
var sv2Prefix = []byte{0x3C, 0xC3, 0x00, 0x01, 0x00, 0x80}

// TapResult is the outcome of a tap verification.
type TapResult struct {
	Valid   bool
	UID     []byte
	Counter uint32
	Err     error
}

// ValidateTapParams checks the format of the p and c parameters before any
// cryptographic or storage work is done.
func ValidateTapParams(p, c string) error {
	if err := checkHexParam("PICCData", p, piccDataHexLen, domain.ErrInvalidPICCData); err != nil {
		return err
	}
	return checkHexParam("SunMAC", c, sunMACHexLen, domain.ErrInvalidSunMAC)
}

func checkHexParam(field, value string, want int, sentinel error) error {
	if len(value) != want {
		return &domain.FormatError{
			Field:  field,
			Detail: fmt.Sprintf("expected %d hex characters, got %d", want, len(value)),
			Err:    sentinel,
		}
	}
	if _, err := hex.DecodeString(value); err != nil {
		return &domain.FormatError{
			Field:  field,
			Detail: fmt.Sprintf("expected %d hex characters", want),
			Err:    sentinel,
		}
	}
	return nil
}

// ExtractPandC pulls the p and c query parameters out of a tap URL.
func ExtractPandC(rawURL string) (p, c string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	q := u.Query()
	p, c = q.Get("p"), q.Get("c")
	if p == "" || c == "" {
		return "", "", false
	}
	return p, c, true
}

// VerifyCardTap decrypts the PICCData with k1, recomputes the SUN MAC with k2 and compares
// it with the received MAC in constant time. When storedUID is set the recovered UID must
// match it. Every failure yields the same ErrTapAuthentication.
//
// Counter freshness is enforced by the card store; lastCounter is not used here.
func VerifyCardTap(piccDataHex, sunMACHex string, k1, k2, storedUID []byte, lastCounter uint32) TapResult {
	if err := ValidateTapParams(piccDataHex, sunMACHex); err != nil {
		return TapResult{Err: err}
	}
	piccData, _ := hex.DecodeString(piccDataHex)
	sunMAC, _ := hex.DecodeString(sunMACHex)

	uid, counter, ok := decryptPICCData(piccData, k1)
	if !ok {
		return TapResult{Err: domain.ErrTapAuthentication}
	}

	expected, ok := computeSunMAC(k2, uid, counter)
	if !ok || subtle.ConstantTimeCompare(expected, sunMAC) != 1 {
		return TapResult{Err: domain.ErrTapAuthentication}
	}

	if len(storedUID) > 0 && !bytes.Equal(storedUID, uid) {
		return TapResult{Err: domain.ErrTapAuthentication}
	}

	return TapResult{
		Valid:   true,
		UID:     uid,
		Counter: uint32(counter[0]) | uint32(counter[1])<<8 | uint32(counter[2])<<16,
	}
}

// decryptPICCData recovers the UID and raw little-endian counter bytes.
func decryptPICCData(piccData, k1 []byte) (uid, counter []byte, ok bool) {
	block, err := aes.NewCipher(k1)
	if err != nil || len(piccData) != aes.BlockSize {
		return nil, nil, false
	}

	plain := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(plain, piccData)

	if plain[0] != piccDataTag {
		return nil, nil, false
	}
	uid = append([]byte(nil), plain[1:1+uidLen]...)
	counter = append([]byte(nil), plain[1+uidLen:1+uidLen+counterLen]...)
	return uid, counter, true
}

// computeSunMAC derives the session MAC key from k2 and returns the truncated MAC
// (odd-indexed bytes of the CMAC over an empty message).
func computeSunMAC(k2, uid, counter []byte) ([]byte, bool) {
	block, err := aes.NewCipher(k2)
	if err != nil {
		return nil, false
	}

	sv2 := make([]byte, 0, aes.BlockSize)
	sv2 = append(sv2, sv2Prefix...)
	sv2 = append(sv2, uid...)
	sv2 = append(sv2, counter...)

	sessionKey, err := cmac.Sum(sv2, block, aes.BlockSize)
	if err != nil {
		return nil, false
	}

	sessionBlock, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, false
	}
	full, err := cmac.Sum(nil, sessionBlock, aes.BlockSize)
	if err != nil {
		return nil, false
	}

	truncated := make([]byte, 0, aes.BlockSize/2)
	for i := 1; i < len(full); i += 2 {
		truncated = append(truncated, full[i])
	}
	return truncated, true
}

// EncodeTap produces the p and c parameters a card programmed with k1 and k2 emits
// for the given UID and counter. Used to emulate taps during development.
func EncodeTap(k1, k2, uid []byte, counter uint32) (p, c string, err error) {
	if len(uid) != uidLen {
		return "", "", fmt.Errorf("uid must be %d bytes", uidLen)
	}
	if counter > 0xFFFFFF {
		return "", "", fmt.Errorf("counter %d exceeds 24 bits", counter)
	}
	block, err := aes.NewCipher(k1)
	if err != nil {
		return "", "", err
	}

	ctr := []byte{byte(counter), byte(counter >> 8), byte(counter >> 16)}
	plain := make([]byte, aes.BlockSize)
	plain[0] = piccDataTag
	copy(plain[1:], uid)
	copy(plain[1+uidLen:], ctr)
	if _, err := rand.Read(plain[1+uidLen+counterLen:]); err != nil {
		return "", "", err
	}

	piccData := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(piccData, plain)

	mac, ok := computeSunMAC(k2, uid, ctr)
	if !ok {
		return "", "", fmt.Errorf("invalid k2")
	}
	return hex.EncodeToString(piccData), hex.EncodeToString(mac), nil
}
