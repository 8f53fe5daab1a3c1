package api

import (
	"net/http"
	"sort"

	"github.com/imHansiy/mediadex/internal/httputil"
)

// presetInfo is the read-only summary of a pattern set. Rules are regex
// values internally, so the API reports counts rather than the patterns
// themselves.
type presetInfo struct {
	Name               string `json:"name"`
	SeasonEpisodeRules int    `json:"season_episode_rules"`
	EpisodeOnlyRules   int    `json:"episode_only_rules"`
	SeasonFolderRules  int    `json:"season_folder_rules"`
	VideoExts          int    `json:"video_exts"`
	LooseFolders       bool   `json:"loose_folders"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	sort.Strings(names)
	presets := make([]presetInfo, 0, len(names))
	for _, name := range names {
		ps := s.registry.Get(name)
		presets = append(presets, presetInfo{
			Name:               ps.Name,
			SeasonEpisodeRules: len(ps.SeasonEpisode),
			EpisodeOnlyRules:   len(ps.EpisodeOnly),
			SeasonFolderRules:  len(ps.SeasonFolders),
			VideoExts:          len(ps.VideoExts),
			LooseFolders:       ps.LooseFolders,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"presets": presets,
		"count":   len(presets),
	})
}
