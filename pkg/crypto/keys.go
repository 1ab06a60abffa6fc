// Mesh key material. All key types wrap an immutable 16-byte secret;
// derived material (NID, encryption/privacy keys, network ID, beacon and
// identity keys, AID) is computed once at construction and cached, so key
// values can be copied freely and compared by value.

package crypto

import "encoding/hex"

// NetworkIDSize is the size of the public network identifier derived from
// a network key via k3.
const NetworkIDSize = 8

// UpperKey is the closed set of keys that can encrypt upper-transport
// access payloads: ApplicationKey and DeviceKey. The upper transport
// type-switches on the concrete type to pick the nonce class and AKF/AID
// bits; no other implementations exist.
type UpperKey interface {
	// Bytes returns a copy of the raw 16-byte key.
	Bytes() []byte

	upperKey()
}

var (
	_ UpperKey = ApplicationKey{}
	_ UpperKey = DeviceKey{}
)

// NetworkKey is a 16-byte network layer key together with the material
// derived from it (Mesh Profile 3.8.6.3): master NID, encryption and
// privacy keys via k2, the public network ID via k3, and the beacon and
// identity keys via k1.
type NetworkKey struct {
	key           [KeySize]byte
	nid           byte
	encryptionKey [KeySize]byte
	privacyKey    [KeySize]byte
	networkID     [NetworkIDSize]byte
	beaconKey     [KeySize]byte
	identityKey   [KeySize]byte
}

// NewNetworkKey constructs a network key from its 16-byte value and runs
// all derivations. The only failure mode is a wrong key length.
func NewNetworkKey(key []byte) (NetworkKey, error) {
	if len(key) != KeySize {
		return NetworkKey{}, ErrInvalidKeySize
	}

	var k NetworkKey
	copy(k.key[:], key)

	// Master security material: k2(N, 0x00).
	nid, encryptionKey, privacyKey, err := K2(key, []byte{0x00})
	if err != nil {
		return NetworkKey{}, err
	}
	k.nid = nid
	copy(k.encryptionKey[:], encryptionKey)
	copy(k.privacyKey[:], privacyKey)

	networkID, err := K3(key)
	if err != nil {
		return NetworkKey{}, err
	}
	copy(k.networkID[:], networkID)

	beaconKey, err := K1(key, S1(saltNKBK), []byte("id128\x01"))
	if err != nil {
		return NetworkKey{}, err
	}
	copy(k.beaconKey[:], beaconKey)

	identityKey, err := K1(key, S1(saltNKIK), []byte("id128\x01"))
	if err != nil {
		return NetworkKey{}, err
	}
	copy(k.identityKey[:], identityKey)

	return k, nil
}

// Bytes returns a copy of the raw key value.
func (k NetworkKey) Bytes() []byte { return append([]byte(nil), k.key[:]...) }

// NID returns the 7-bit network identifier carried in every network PDU
// header, derived from the master security material.
func (k NetworkKey) NID() byte { return k.nid }

// EncryptionKey returns the network layer AES-CCM key.
func (k NetworkKey) EncryptionKey() []byte { return append([]byte(nil), k.encryptionKey[:]...) }

// PrivacyKey returns the key used for network header obfuscation.
func (k NetworkKey) PrivacyKey() []byte { return append([]byte(nil), k.privacyKey[:]...) }

// NetworkID returns the public 8-byte network identifier advertised in
// secure network beacons.
func (k NetworkKey) NetworkID() []byte { return append([]byte(nil), k.networkID[:]...) }

// BeaconKey returns the key authenticating secure network beacons.
func (k NetworkKey) BeaconKey() []byte { return append([]byte(nil), k.beaconKey[:]...) }

// IdentityKey returns the node identity advertising key.
func (k NetworkKey) IdentityKey() []byte { return append([]byte(nil), k.identityKey[:]...) }

func (k NetworkKey) String() string {
	return "NetworkKey(" + hex.EncodeToString(k.networkID[:]) + ")"
}

// ApplicationKey is a 16-byte application key with its derived 6-bit AID.
type ApplicationKey struct {
	key [KeySize]byte
	aid byte
}

// NewApplicationKey constructs an application key and derives its AID.
func NewApplicationKey(key []byte) (ApplicationKey, error) {
	if len(key) != KeySize {
		return ApplicationKey{}, ErrInvalidKeySize
	}
	aid, err := K4(key)
	if err != nil {
		return ApplicationKey{}, err
	}
	var k ApplicationKey
	copy(k.key[:], key)
	k.aid = aid
	return k, nil
}

// Bytes returns a copy of the raw key value.
func (k ApplicationKey) Bytes() []byte { return append([]byte(nil), k.key[:]...) }

// AID returns the 6-bit application key identifier carried in lower
// transport access PDUs alongside AKF=1.
func (k ApplicationKey) AID() byte { return k.aid }

func (ApplicationKey) upperKey() {}

// DeviceKey is a node's 16-byte device key, used with the device nonce for
// node-to-node configuration traffic (AKF=0).
type DeviceKey struct {
	key [KeySize]byte
}

// NewDeviceKey constructs a device key.
func NewDeviceKey(key []byte) (DeviceKey, error) {
	if len(key) != KeySize {
		return DeviceKey{}, ErrInvalidKeySize
	}
	var k DeviceKey
	copy(k.key[:], key)
	return k, nil
}

// Bytes returns a copy of the raw key value.
func (k DeviceKey) Bytes() []byte { return append([]byte(nil), k.key[:]...) }

func (DeviceKey) upperKey() {}
