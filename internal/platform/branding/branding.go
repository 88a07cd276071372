// Package branding centralizes product naming.
package branding

// AppName is the public product name.
const AppName = "Study Commons"
