/*
	WebSchem, web server for block game schematics
	Copyright (C) 2022 Maxim Zhuchkov

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.

	Contact me via mail: q3.max.2011@yandex.ru or Discord: MaX#6717
*/

package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/maxsupermanhd/WebSchem/renderSession"
	"github.com/maxsupermanhd/WebSchem/schematic"
	"github.com/maxsupermanhd/WebSchem/textureAtlas"
)

func requestOptions(r *http.Request) (renderSession.Options, error) {
	opts := sessionOptions()
	if s := r.URL.Query().Get("seed"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("bad seed: %w", err)
		}
		opts.Seed = seed
	}
	return opts, nil
}

func apiBlockGET(w http.ResponseWriter, r *http.Request) (int, string) {
	if packs == nil {
		return http.StatusServiceUnavailable, "Resource packs are not loaded"
	}
	b, err := primitives.ParseBlock(r.URL.Query().Get("block"))
	if err != nil {
		return http.StatusBadRequest, "Error parsing block: " + err.Error()
	}
	opts, err := requestOptions(r)
	if err != nil {
		return http.StatusBadRequest, err.Error()
	}
	atlas := textureAtlas.New(packs.loader, opts.Logger, atlasTileSize())
	opts.Handles = atlas
	opts.Releaser = atlas
	sess := renderSession.New(packs.loader, opts)
	defer sess.Destroy()
	res, err := sess.Resolve(r.Context(), b)
	if err != nil {
		return http.StatusUnprocessableEntity, "Error resolving block state: " + err.Error()
	}
	g, err := sess.BlockGeometry(r.Context(), b, nil)
	if err != nil {
		return http.StatusUnprocessableEntity, "Error building block geometry: " + err.Error()
	}
	sheet := atlas.Pack()
	setContentTypeJson(w)
	return marshalOrFail(http.StatusOK, map[string]any{
		"block":      b.Key(),
		"resolution": res.Kind.String(),
		"key":        g.Key,
		"atlas_size": sheet.Size,
		"template":   exportTemplate(g, sheet),
	})
}

func apiRenderPOST(w http.ResponseWriter, r *http.Request) (int, string) {
	if packs == nil {
		return http.StatusServiceUnavailable, "Resource packs are not loaded"
	}
	maxBody := int64(cfgInt(64<<20, "web", "max_schematic_size"))
	s, err := schematic.Read(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, fmt.Sprintf("Schematic is larger than %d bytes", tooLarge.Limit)
		}
		return http.StatusBadRequest, "Error reading schematic: " + err.Error()
	}
	opts, err := requestOptions(r)
	if err != nil {
		return http.StatusBadRequest, err.Error()
	}
	name := s.Name
	if name == "" {
		name = "schematic"
	}
	task := newProgressTask(tasksProgressBroadcaster, "Render "+name)
	res, err := renderSchematic(r.Context(), packs.loader, s, opts, task)
	if err != nil {
		return http.StatusInternalServerError, "Error rendering schematic: " + err.Error()
	}
	if r.URL.Query().Get("format") == "obj" {
		var buf bytes.Buffer
		if err := writeOBJ(&buf, res, ""); err != nil {
			return http.StatusInternalServerError, "Error writing OBJ: " + err.Error()
		}
		w.Header().Set("Content-Type", "model/obj")
		return http.StatusOK, buf.String()
	}
	type renderResponse struct {
		Scene  exportedScene `json:"scene"`
		Errors []string      `json:"errors"`
		Took   string        `json:"took"`
	}
	resp := renderResponse{Scene: exportScene(res), Errors: []string{}, Took: res.Took.String()}
	var merr *multierror.Error
	if errors.As(res.BuildErr, &merr) {
		for _, e := range merr.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
	} else if res.BuildErr != nil {
		resp.Errors = append(resp.Errors, res.BuildErr.Error())
	}
	setContentTypeJson(w)
	return marshalOrFail(http.StatusOK, resp)
}
