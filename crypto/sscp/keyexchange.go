package sscp

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
)

// rsaKeyValue is the XML public key document exchanged in handshake steps 1 and 2.
type rsaKeyValue struct {
	XMLName  xml.Name `xml:"RSAKeyValue"`
	Modulus  string   `xml:"Modulus"`
	Exponent string   `xml:"Exponent"`
}

// GenerateKeyPair creates an ephemeral handshake keypair.
func GenerateKeyPair(r RandomSource) (*rsa.PrivateKey, error) {
	if r == nil {
		r = DefaultRandom
	}
	return rsa.GenerateKey(r, RSAKeyBits)
}

// MarshalPublicKey encodes pub as an RSAKeyValue XML document.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil || pub.N == nil {
		return nil, ErrInvalidPublicKey
	}
	doc := rsaKeyValue{
		Modulus:  base64.StdEncoding.EncodeToString(pub.N.Bytes()),
		Exponent: base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
	return xml.Marshal(doc)
}

// ParsePublicKey decodes an RSAKeyValue XML document.
func ParsePublicKey(b []byte) (*rsa.PublicKey, error) {
	var doc rsaKeyValue
	if err := xml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	n, err := base64.StdEncoding.DecodeString(doc.Modulus)
	if err != nil || len(n) == 0 {
		return nil, ErrInvalidPublicKey
	}
	e, err := base64.StdEncoding.DecodeString(doc.Exponent)
	if err != nil || len(e) == 0 || len(e) > 4 {
		return nil, ErrInvalidPublicKey
	}
	exp := new(big.Int).SetBytes(e)
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}
	if pub.E < 3 || pub.E%2 == 0 || pub.N.BitLen() < 1024 {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}

// EncryptKeyShare encrypts a symmetric key share to the peer public key (PKCS#1 v1.5).
func EncryptKeyShare(r RandomSource, pub *rsa.PublicKey, share []byte) ([]byte, error) {
	if r == nil {
		r = DefaultRandom
	}
	out, err := rsa.EncryptPKCS1v15(r, pub, share)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyShare, err)
	}
	return out, nil
}

// DecryptKeyShare recovers a key share and checks its size.
func DecryptKeyShare(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	share, err := rsa.DecryptPKCS1v15(nil, priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyShare, err)
	}
	if len(share) != KeyShareSize {
		Wipe(share)
		return nil, ErrInvalidKeyShare
	}
	return share, nil
}
