package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/onionspider/internal/model"
)

const (
	// OnionV3Length is the length of a v3 onion label: 56 base32 characters.
	OnionV3Length = 56

	// OnionV3TotalLength is OnionV3Length plus the ".onion" suffix.
	OnionV3TotalLength = OnionV3Length + len(OnionSuffix)

	// OnionV3Version is the trailing version byte of a decoded v3 address.
	OnionV3Version = 0x03

	// OnionV2Length is the length of a v2 onion label. V2 services were
	// retired by the Tor network in October 2021.
	OnionV2Length = 16

	// OnionSuffix is the special-use top-level domain of onion services.
	OnionSuffix = ".onion"
)

// Base32 uses a-z and 2-7 only.
var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is the constant prefix of the v3 checksum input defined
// in rend-spec-v3.
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address reports whether address is a v3 onion address with a
// correct checksum and version byte. Subdomains are not accepted; pass the
// last two labels only.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	label := strings.TrimSuffix(address, OnionSuffix)
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey (32) || checksum (2) || version (1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return false
	}

	want := computeV3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address reports whether address has the shape of a retired v2 onion
// address. There is no checksum to verify.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// DetectVersion classifies the onion label of host, which may carry
// subdomains (e.g. "blog.<label>.onion"). Hosts that are neither a checksummed
// v3 address nor v2-shaped are reported as model.OnionVersionUnknown; they
// are still crawlable.
func DetectVersion(host string) model.OnionVersion {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if !strings.HasSuffix(host, OnionSuffix) {
		return model.OnionVersionUnknown
	}

	labels := strings.Split(strings.TrimSuffix(host, OnionSuffix), ".")
	service := labels[len(labels)-1] + OnionSuffix

	switch {
	case IsValidV3Address(service):
		return model.OnionVersionV3
	case IsV2Address(service):
		return model.OnionVersionV2
	default:
		return model.OnionVersionUnknown
	}
}

// ComputeV3AddressFromPublicKey derives the v3 onion address of a 32-byte
// ed25519 public key.
func ComputeV3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}

	data := make([]byte, 35)
	copy(data[:32], pubkey)
	copy(data[32:34], computeV3Checksum(pubkey, OnionV3Version))
	data[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}
