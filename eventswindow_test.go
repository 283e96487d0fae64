/*
	botfilter - an email engagement bot filter by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package botfilter

import (
	"fmt"
	"testing"
	"time"

	"github.com/scraperwall/botfilter/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsWindow(t *testing.T) {
	ew := NewEventsWindow(100, time.Minute, 5)
	start := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 130; i++ {
		ew.Add(&data.Event{
			Kind: data.EventDecision,
			URI:  fmt.Sprintf("/gh/o/%d", i),
			Time: start.Add(time.Duration(i) * time.Second),
		})
	}

	require.Equal(t, 100, ew.Len())

	events := ew.Events()
	assert.Equal(t, "/gh/o/129", events[0].URI)
	assert.Equal(t, "/gh/o/30", events[99].URI)

	// events 30 to 39 are older than five minutes at start+5m40s
	assert.Equal(t, 90, ew.Expire(start.Add(5*time.Minute+40*time.Second)))
	assert.Equal(t, "/gh/o/40", ew.Events()[89].URI)

	assert.Equal(t, 0, ew.Expire(start.Add(time.Hour)))
}

func TestEventsWindowDisabled(t *testing.T) {
	ew := NewEventsWindow(0, time.Minute, 5)
	ew.Add(&data.Event{Kind: data.EventDecision, Time: time.Now()})

	assert.Equal(t, 0, ew.Len())
	assert.Empty(t, ew.Events())
}
