// Package analytics turns message outcome records into funnel metrics and a
// strategy recommendation.
//
// Rates are kept unrounded internally. Rounding happens only when a report
// is presented, so comparisons between categories never see rounding
// artefacts.
package analytics
