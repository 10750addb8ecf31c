package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"meshtui/internal/domain"
)

// NodeRepo persists the merged node view between sessions.
type NodeRepo struct {
	db *sql.DB
}

func NewNodeRepo(db *sql.DB) *NodeRepo {
	return &NodeRepo{db: db}
}

func (r *NodeRepo) Upsert(ctx context.Context, n domain.Node) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes(node_num, short_name, long_name, hw_model, public_key, snr, hops_away,
			battery_level, voltage, channel_utilization, air_util_tx,
			latitude_i, longitude_i, altitude,
			last_heard_at, is_favorite, is_ignored, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_num) DO UPDATE SET
			short_name = excluded.short_name,
			long_name = excluded.long_name,
			hw_model = excluded.hw_model,
			public_key = excluded.public_key,
			snr = excluded.snr,
			hops_away = excluded.hops_away,
			battery_level = excluded.battery_level,
			voltage = excluded.voltage,
			channel_utilization = excluded.channel_utilization,
			air_util_tx = excluded.air_util_tx,
			latitude_i = excluded.latitude_i,
			longitude_i = excluded.longitude_i,
			altitude = excluded.altitude,
			last_heard_at = excluded.last_heard_at,
			is_favorite = excluded.is_favorite,
			is_ignored = excluded.is_ignored,
			updated_at = excluded.updated_at
	`, int64(n.Num), n.ShortName, n.LongName, n.HWModel, n.PublicKey,
		nullableFloat(n.SNR), nullableInt(n.HopsAway),
		nullableUint(n.BatteryLevel), nullableFloat(n.Voltage),
		nullableFloat(n.ChannelUtilization), nullableFloat(n.AirUtilTx),
		nullableInt32(n.LatitudeI), nullableInt32(n.LongitudeI), nullableInt32(n.Altitude),
		toUnixMillis(n.LastHeard), boolToInt(n.IsFavorite), boolToInt(n.IsIgnored), toUnixMillis(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	return nil
}

func (r *NodeRepo) ListSortedByLastHeard(ctx context.Context) ([]domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_num, short_name, long_name, hw_model, public_key, snr, hops_away,
			battery_level, voltage, channel_utilization, air_util_tx,
			latitude_i, longitude_i, altitude,
			last_heard_at, is_favorite, is_ignored, updated_at
		FROM nodes
		ORDER BY last_heard_at DESC, node_num ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []domain.Node
	for rows.Next() {
		var (
			n           domain.Node
			num         int64
			snr         sql.NullFloat64
			hops        sql.NullInt64
			battery     sql.NullInt64
			voltage     sql.NullFloat64
			chanUtil    sql.NullFloat64
			airUtil     sql.NullFloat64
			latitudeI   sql.NullInt64
			longitudeI  sql.NullInt64
			altitude    sql.NullInt64
			heardMs     int64
			isFavorite  int64
			isIgnored   int64
			updatedMs   int64
		)
		if err := rows.Scan(&num, &n.ShortName, &n.LongName, &n.HWModel, &n.PublicKey,
			&snr, &hops, &battery, &voltage, &chanUtil, &airUtil,
			&latitudeI, &longitudeI, &altitude,
			&heardMs, &isFavorite, &isIgnored, &updatedMs); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		// #nosec G115 -- column is written from a uint32.
		n.Num = uint32(num)
		n.LastHeard = fromUnixMillis(heardMs)
		n.UpdatedAt = fromUnixMillis(updatedMs)
		n.IsFavorite = isFavorite != 0
		n.IsIgnored = isIgnored != 0
		if snr.Valid {
			v := snr.Float64
			n.SNR = &v
		}
		if hops.Valid {
			v := int(hops.Int64)
			n.HopsAway = &v
		}
		if battery.Valid {
			// #nosec G115 -- column is written from a uint32.
			v := uint32(battery.Int64)
			n.BatteryLevel = &v
		}
		if voltage.Valid {
			v := voltage.Float64
			n.Voltage = &v
		}
		if chanUtil.Valid {
			v := chanUtil.Float64
			n.ChannelUtilization = &v
		}
		if airUtil.Valid {
			v := airUtil.Float64
			n.AirUtilTx = &v
		}
		n.LatitudeI = nullToInt32(latitudeI)
		n.LongitudeI = nullToInt32(longitudeI)
		n.Altitude = nullToInt32(altitude)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	return out, nil
}

func (r *NodeRepo) Delete(ctx context.Context, num uint32) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE node_num = ?`, int64(num)); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}

	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullableInt32(v *int32) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullableUint(v *uint32) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullToInt32(v sql.NullInt64) *int32 {
	if !v.Valid {
		return nil
	}
	// #nosec G115 -- column is written from an int32.
	out := int32(v.Int64)

	return &out
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}

	return 0
}
