package attest

// Signer names the identity under which a registry record is written.
// The attestation algorithm is signer-agnostic: the ledger takes one signer
// per registry and never inspects the identity beyond recording it.
// True asymmetric signing would slot in behind this interface.
type Signer interface {
	Identity() string
}

// StaticSigner is a fixed identity string.
type StaticSigner string

func (s StaticSigner) Identity() string { return string(s) }

// Default signer identities for the two federation registries.
const (
	LocalSignerID       = "concordia-notary-local"
	ContinentalSignerID = "concordia-notary-continental"
)
