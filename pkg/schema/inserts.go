package schema

// SongplaysInsert selects one fact row per NextSong event, matched to the song catalogue on title, artist and duration.
const SongplaysInsert = `SELECT
		md5(events.sessionid || events.start_time) songplay_id,
		events.start_time,
		events.userid,
		events.level,
		songs.song_id,
		songs.artist_id,
		events.sessionid,
		events.location,
		events.useragent
	FROM (SELECT TIMESTAMP 'epoch' + ts/1000 * interval '1 second' AS start_time, *
		FROM staging_events
		WHERE page='NextSong') events
	LEFT JOIN staging_songs songs
		ON events.song = songs.title
		AND events.artist = songs.artist_name
		AND events.length = songs.duration`

const UsersInsert = `SELECT distinct userid, firstname, lastname, gender, level
	FROM staging_events
	WHERE page='NextSong'`

const SongsInsert = `SELECT distinct song_id, title, artist_id, year, duration
	FROM staging_songs`

const ArtistsInsert = `SELECT distinct artist_id, artist_name, artist_location, artist_latitude, artist_longitude
	FROM staging_songs`

const TimeInsert = `SELECT start_time, extract(hour from start_time), extract(day from start_time), extract(week from start_time),
		extract(month from start_time), extract(year from start_time), extract(dayofweek from start_time)
	FROM songplays`

// InsertFor returns the SELECT that populates the given fact or dimension table.
func InsertFor(table Table) (string, bool) {
	switch table.Name {
	case Songplays.Name:
		return SongplaysInsert, true
	case Users.Name:
		return UsersInsert, true
	case Songs.Name:
		return SongsInsert, true
	case Artists.Name:
		return ArtistsInsert, true
	case Time.Name:
		return TimeInsert, true
	}

	return "", false
}
