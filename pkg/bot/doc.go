// Package bot wires a candidate source, the captioning service, the optional
// geocoder and the social API into a single publish run driven by the retry
// controller.
//
// A run sleeps for the delay found in the delay file, loads the history
// ledger, hands candidates to the controller, and records the published
// candidate in the ledger. Dry runs caption and geocode but never post and
// never touch the ledger.
package bot
