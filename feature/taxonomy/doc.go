// Package taxonomy relays the node kinds of the appliance taxonomy, which helps
// when choosing the kinds to sync.
package taxonomy
