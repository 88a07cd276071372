// Package passkey holds WebAuthn relying party configuration and
// ceremony session kinds shared by the accounts service.
package passkey
