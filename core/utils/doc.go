// Package utils provides small conversion helpers shared by the sync features.
// Stringify turns decoded upstream JSON values into the text stored in the mirror.
package utils
