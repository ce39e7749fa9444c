// Package segments models the event timetable extracted from a video: typed
// timestamps, the CSV contract, and the normalization rules that turn a model
// reply into cuttable segments.
package segments
