// Package logger provides the structured logging interface used across boorudl.
//
// It wraps zerolog with a small API:
//
//	logger.Initialize(&logger.Config{Level: "debug", File: "boorudl.log"})
//	log := logger.GetLogger().WithFields(map[string]interface{}{
//	    "section":  "landscapes",
//	    "endpoint": "danbooru",
//	})
//	log.InfoWithFields("Page fetched", map[string]interface{}{"posts": 320})
//
// Console output is colored and human readable. When a file is configured the
// same events are also appended to it as JSON lines.
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
