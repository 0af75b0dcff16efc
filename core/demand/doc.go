// Package demand runs the demand response device demo: the load of every
// configured device is reduced by the quantity of the active orders of its
// asset portfolio, pushed to the local serial device and uploaded as
// telemetry.
package demand
