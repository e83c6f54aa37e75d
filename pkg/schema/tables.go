// Package schema holds the Sparkify star schema: the DDL of every staging, fact and dimension table and
// the SELECT statements used to populate the fact and dimension tables from staging.
package schema

type Role int

const (
	RoleStaging Role = iota
	RoleFact
	RoleDimension
)

func (r Role) String() string {
	switch r {
	case RoleStaging:
		return "staging"
	case RoleFact:
		return "fact"
	case RoleDimension:
		return "dimension"
	}
	return "unknown"
}

// Table describes one warehouse table. Descriptors are defined once and never modified.
type Table struct {
	Name   string
	Create string
	Role   Role
}

var (
	StagingEvents = Table{
		Name: "staging_events",
		Role: RoleStaging,
		Create: `CREATE TABLE IF NOT EXISTS public.staging_events (
	artist varchar(256),
	auth varchar(256),
	firstname varchar(256),
	gender varchar(256),
	iteminsession int4,
	lastname varchar(256),
	length numeric(18,0),
	"level" varchar(256),
	location varchar(256),
	"method" varchar(256),
	page varchar(256),
	registration numeric(18,0),
	sessionid int4,
	song varchar(256),
	status int4,
	ts int8,
	useragent varchar(256),
	userid int4
);`,
	}

	StagingSongs = Table{
		Name: "staging_songs",
		Role: RoleStaging,
		Create: `CREATE TABLE IF NOT EXISTS public.staging_songs (
	num_songs int4,
	artist_id varchar(256),
	artist_name varchar(256),
	artist_latitude numeric(18,0),
	artist_longitude numeric(18,0),
	artist_location varchar(256),
	song_id varchar(256),
	title varchar(256),
	duration numeric(18,0),
	"year" int4
);`,
	}

	Songplays = Table{
		Name: "songplays",
		Role: RoleFact,
		Create: `CREATE TABLE IF NOT EXISTS public.songplays (
	playid varchar(32) NOT NULL,
	start_time timestamp NOT NULL,
	userid int4 NOT NULL,
	"level" varchar(256),
	songid varchar(256),
	artistid varchar(256),
	sessionid int4,
	location varchar(256),
	user_agent varchar(256),
	CONSTRAINT songplays_pkey PRIMARY KEY (playid)
);`,
	}

	Users = Table{
		Name: "users",
		Role: RoleDimension,
		Create: `CREATE TABLE IF NOT EXISTS public.users (
	userid int4 NOT NULL,
	first_name varchar(256),
	last_name varchar(256),
	gender varchar(256),
	"level" varchar(256),
	CONSTRAINT users_pkey PRIMARY KEY (userid)
);`,
	}

	Songs = Table{
		Name: "songs",
		Role: RoleDimension,
		Create: `CREATE TABLE IF NOT EXISTS public.songs (
	songid varchar(256) NOT NULL,
	title varchar(256),
	artistid varchar(256),
	"year" int4,
	duration numeric(18,0),
	CONSTRAINT songs_pkey PRIMARY KEY (songid)
);`,
	}

	Artists = Table{
		Name: "artists",
		Role: RoleDimension,
		Create: `CREATE TABLE IF NOT EXISTS public.artists (
	artistid varchar(256) NOT NULL,
	name varchar(256),
	location varchar(256),
	lattitude numeric(18,0),
	longitude numeric(18,0)
);`,
	}

	// Time is quoted everywhere since "time" is a reserved word in Redshift.
	Time = Table{
		Name: `public."time"`,
		Role: RoleDimension,
		Create: `CREATE TABLE IF NOT EXISTS public."time" (
	start_time timestamp NOT NULL,
	"hour" int4,
	"day" int4,
	week int4,
	"month" varchar(256),
	"year" int4,
	weekday varchar(256),
	CONSTRAINT time_pkey PRIMARY KEY (start_time)
);`,
	}
)

var allTables = []Table{StagingEvents, StagingSongs, Songplays, Artists, Songs, Users, Time}

// Tables returns every table of the schema in creation order.
func Tables() []Table {
	tables := make([]Table, len(allTables))
	copy(tables, allTables)
	return tables
}

// TablesByRole returns the tables with the given role, in creation order.
func TablesByRole(role Role) []Table {
	tables := make([]Table, 0)
	for _, t := range allTables {
		if t.Role == role {
			tables = append(tables, t)
		}
	}

	return tables
}

func FindTable(name string) (Table, bool) {
	for _, t := range allTables {
		if t.Name == name {
			return t, true
		}
	}

	return Table{}, false
}
