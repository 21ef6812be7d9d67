// Package retired mirrors hosts the appliance has marked as destroyed.
package retired
