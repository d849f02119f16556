// Package config defines the lattice-server configuration structure.
package config
