// Package statistics models Traewelling trips and loads them day by day.
//
// Speeds are always derived from distance and duration. The API's own speed
// field is ignored.
package statistics
