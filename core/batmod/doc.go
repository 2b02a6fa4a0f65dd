// Package batmod simulates the power flows of a PV-battery system step by
// step. It provides one engine per coupling topology (AC, DC and PV), the
// numeric primitives they share, the residual power precomputation feeding
// them and a lossless reference battery.
//
// Engines are pure: Run takes the driving series and a State and returns the
// realised series together with the State after the last step, so runs over
// consecutive windows can be chained.
package batmod
