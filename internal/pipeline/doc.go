// Package pipeline parses, validates, and plans declarative pipeline files.
//
// A pipeline file is YAML with the top-level keys os, language, python, env,
// sudo, addons, install, before_script, and script. Parsing is strict:
// unrecognized keys are rejected. Plan expands the os/python/env matrix into
// independent legs, each carrying the merged environment and the ordered
// command sequence for its three stages.
package pipeline
