// Command deadwax is the CLI for the deadwax ISRC catalog: registrant
// profiles, sequence allocation, record management, XML exchange, and the
// snapshot/restore safety protocol.
package main
