// Package config provides configuration management for the downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Conversion to the filter set consumed by the download engine
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/GOG
//	// 3 retries with a 1 second delay, 3 second idle timeout
//	// Hash verification enabled
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Saving Settings
//
//	settings.DownloadsPath = "/mnt/storage/GOG"
//	err := settings.Save("/path/to/config.json")
package config
