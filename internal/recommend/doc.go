// Package recommend turns a hiring query into assessment recommendations.
//
// The Orchestrator appends the text of any linked pages to the query,
// retrieves catalog passages, prompts the model and hands its answer to
// Parse. Parse reads the first <result> block, preferring JSON and falling
// back to the older pipe table layout. Malformed output becomes an empty
// set rather than an error.
package recommend
