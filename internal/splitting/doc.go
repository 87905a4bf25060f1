// Package splitting decides how one physical unit is exposed as vdSDs.
//
// Split is a pure function from a capability Description to an ordered list
// of device Specs. It applies four rules, in order:
//
//  1. Every independent output function is its own device. Outputs that
//     share a Combine key are one function and stay together.
//  2. Outputs of one Combine group that differ in zone, primary group or
//     scene set are split apart anyway. A standalone input is its own
//     device.
//  3. Buttons, binary inputs and sensors never force a split. They attach
//     to the device of the function they are bound to; unbound inputs go to
//     the first output device, or together form one input-only device.
//  4. Integrated units get linked dSUIDs derived from the unit's base.
//     Detachable units get independent dSUIDs seeded by their module
//     address.
package splitting
