// Package hardware simulates the bot's analog magazine sensor and its
// flywheel motor.
//
// The turret package only depends on the small Sensor and Motor interfaces
// it declares; the types here satisfy them for development and for running
// without a board attached.
package hardware
