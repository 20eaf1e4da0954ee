//go:build !windows

package config

func defaultEOL() string { return "unix" }
