// Package flagkit is a deterministic experimentation and feature-flagging
// engine. A Client is built from one datafile snapshot and answers
// experiment activations, feature checks, and variable lookups with stable,
// hash-based assignments: the same user and the same datafile revision
// always produce the same decision, with no coordination between instances.
//
// Basic usage:
//
//	client, err := flagkit.New(datafile)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	variation, err := client.Activate(ctx, "checkout_redesign", userID, map[string]any{
//		"country": "US",
//	})
//
//	if enabled, _ := client.IsFeatureEnabled(ctx, "new_checkout", userID, nil); enabled {
//		color, _ := client.GetFeatureVariableString(ctx, "new_checkout", "button_color", userID, nil)
//		_ = color
//	}
//
// Decisions are computed for experiments in every status; only event
// dispatch is gated on the experiment running. Event delivery and sticky
// profile storage are best-effort collaborators and never influence the
// decision itself.
package flagkit
