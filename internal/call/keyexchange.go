package call

import (
	"bytes"

	"peercall/internal/securechannel"
	"peercall/pkg/constants"
)

type keyOrigin int

const (
	keyNone keyOrigin = iota
	keyLocal
	keyRemote
)

// sessionKey holds the chat key for the current call.
//
// Both sides may generate a key when their media connects at the same
// moment. A received key always replaces a key nobody else has seen
// yet; between two generated keys the bytewise larger one wins on both
// sides. The side holding the larger key answers a smaller one by
// announcing its own again, so a lost announcement is repaired by the
// peer's. Once a remote key has been adopted the key never changes again.
// Keys of any length other than constants.SessionKeySize are refused.
type sessionKey struct {
	key    []byte
	origin keyOrigin
}

// ensure returns the key, generating one if none is held. generated is
// true when the caller must announce the new key to the peer.
func (k *sessionKey) ensure() (key []byte, generated bool, err error) {
	if k.origin != keyNone {
		return k.key, false, nil
	}
	key, err = securechannel.GenerateKey()
	if err != nil {
		return nil, false, err
	}
	k.key, k.origin = key, keyLocal
	return key, true, nil
}

type keyVerdict int

const (
	keyIgnored keyVerdict = iota
	keyAdopted
	// keyKept means the peer sent a smaller key while ours is held. The
	// peer has to hear our key again or the two sides never converge.
	keyKept
	keyInvalid
)

// receive applies a key sent by the peer
func (k *sessionKey) receive(remote []byte) keyVerdict {
	if len(remote) != constants.SessionKeySize {
		return keyInvalid
	}
	switch k.origin {
	case keyNone:
	case keyLocal:
		if bytes.Compare(remote, k.key) <= 0 {
			return keyKept
		}
	default:
		return keyIgnored
	}
	k.key = append([]byte(nil), remote...)
	k.origin = keyRemote
	return keyAdopted
}

// local returns the key if it was generated here, for re-announcing on a
// late control channel
func (k *sessionKey) local() []byte {
	if k.origin == keyLocal {
		return k.key
	}
	return nil
}

func (k *sessionKey) get() []byte {
	return k.key
}

func (k *sessionKey) reset() {
	k.key, k.origin = nil, keyNone
}
