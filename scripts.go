package redsift

import "github.com/redis/go-redis/v9"

// Server-side scripts. Each runs as a single indivisible operation against
// the store, which is what makes index writes invisible to readers until
// complete and keeps affix scans consistent without locks.

// Estimate modes passed as ARGV[1] to estimateWorkScriptSrc.
const (
	estimateModeSet   = "set"
	estimateModeRange = "range"
	estimateModeAffix = "affix"
)

// estimateWorkScriptSrc predicts the relative cost of executing a filter
// without materializing its matches.
//
//   - set: total cardinality of the KEYS (sets or zsets)
//   - range: signed rom-style estimate over KEYS[1] with score bounds
//     ARGV[2..3]; a negative value signals that copying the subrange
//     directly is cheaper than intersect-and-trim
//   - affix: rank distance in KEYS[1] between the lexical sentinels ARGV[2]
//     (the search string) and ARGV[3] (its upper bound, "" for none)
//
// All paths are O(log N); nothing here scans members.
const estimateWorkScriptSrc = `
local mode = ARGV[1]

if mode == 'set' then
    local total = 0
    for _, idx in ipairs(KEYS) do
        -- redis.call('TYPE') wraps the reply; use pcall and read .ok
        local typ = redis.pcall('TYPE', idx).ok
        if typ == 'set' then
            total = total + tonumber(redis.call('SCARD', idx))
        elseif typ == 'zset' then
            total = total + tonumber(redis.call('ZCARD', idx))
        end
    end
    return total
end

local idx = KEYS[1]
local size = tonumber(redis.call('ZCARD', idx))
if size == 0 then
    return 0
end

if mode == 'range' then
    local start_member = redis.call('ZRANGEBYSCORE', idx, ARGV[2], 'inf', 'limit', 0, 1)
    local start_index = 0
    if #start_member == 1 then
        start_index = tonumber(redis.call('ZRANK', idx, start_member[1]))
    end

    local end_member = redis.call('ZREVRANGEBYSCORE', idx, ARGV[3], '-inf', 'limit', 0, 1)
    local end_index = -1
    if #end_member == 1 then
        end_index = tonumber(redis.call('ZRANK', idx, end_member[1]))
    end

    local range_size = math.max(0, end_index - start_index + 1)

    -- intersect-and-trim copies the whole zset then deletes the complement
    size = size + size - range_size

    -- pulling ranges isn't free, call it 2x as expensive per entry
    range_size = range_size * 2

    if range_size < size then
        return -range_size
    end
    return size
end

-- mode == 'affix'. Members are 'word\1id', so a bare search string sorts
-- before every member extending it and can be used as a rank sentinel.
local prefix = ARGV[2]
if #prefix == 0 then
    return size
end

local function sentinel_rank(member)
    redis.call('ZADD', idx, 0, member)
    local r = tonumber(redis.call('ZRANK', idx, member))
    redis.call('ZREM', idx, member)
    return r
end

local lo = sentinel_rank(prefix)
local hi = size
if #ARGV[3] > 0 then
    hi = sentinel_rank(ARGV[3])
end
return math.max(0, hi - lo)
`

// affixMatchScriptSrc performs prefix, suffix, and pattern matching over an
// affix structure. KEYS = {dest, scratch, index}; ARGV = {search, pattern,
// is_first, batch, ttl_ms}. Locates the first candidate by sentinel rank, scans
// forward in batches, and stops at the first member that no longer shares the search
// string prefix, bounding work to O(log N + matches). Matched entity ids are
// collected in the scratch zset; when is_first the destination is replaced
// by the scratch set, otherwise the destination is intersected with it.
// The destination's safety TTL is armed here so it exists from the same
// atomic call that writes the key.
const affixMatchScriptSrc = `
local dest = KEYS[1]
local scratch = KEYS[2]
local idx = KEYS[3]

local search = ARGV[1]
local pattern = ARGV[2]
local ssize = #search
local is_first = tonumber(ARGV[3])
local batch = tonumber(ARGV[4])

local start_index = 0
if ssize > 0 and redis.call('EXISTS', idx) == 1 then
    redis.call('ZADD', idx, 0, search)
    start_index = tonumber(redis.call('ZRANK', idx, search))
    redis.call('ZREM', idx, search)
end

local end_index = tonumber(redis.call('ZCARD', idx)) - 1

local check_match
if #pattern > 0 then
    check_match = function(v) return string.match(v, pattern) end
else
    check_match = function(v) return string.sub(v, 1, ssize) == search end
end

-- the id starts after the last separator byte; ZADD dedups for us
local found_match = function(v)
    local endv = #v
    while string.sub(v, endv, endv) ~= '\1' do
        endv = endv - 1
    end
    return redis.call('ZADD', scratch, 0, string.sub(v, endv + 1, #v))
end

local matched = 0
local bounded = ssize > 0
for i = start_index, end_index, batch do
    local data = redis.call('ZRANGE', idx, i, i + batch - 1)
    local last
    for _, v in ipairs(data) do
        if check_match(v) then
            matched = matched + tonumber(found_match(v))
        end
        last = v
    end
    -- bail once we've passed every member sharing the search prefix
    if not last then
        break
    elseif bounded and string.sub(last, 1, ssize) > search then
        break
    end
end

if is_first > 0 then
    redis.call('DEL', dest)
    if matched > 0 then
        redis.call('RENAME', scratch, dest)
    end
else
    matched = redis.call('ZINTERSTORE', dest, 2, scratch, dest, 'WEIGHTS', 1, 0)
    redis.call('DEL', scratch)
end

if redis.call('EXISTS', dest) == 1 then
    redis.call('PEXPIRE', dest, ARGV[5])
end

return matched
`

// subrangeScriptSrc copies the members of a score window into a destination
// zset. KEYS = {dest, index}; ARGV = {min, max, batch, ttl_ms} with
// ZRANGEBYSCORE bounds. Used when the planner decides a direct subrange
// extraction beats intersect-and-trim for the opening numeric filter. Arms
// the destination's safety TTL in the same atomic call.
const subrangeScriptSrc = `
local idx = KEYS[2]

local start_member = redis.call('ZRANGEBYSCORE', idx, ARGV[1], 'inf', 'limit', 0, 1)
if #start_member == 0 then
    return 0
end
local start_index = tonumber(redis.call('ZRANK', idx, start_member[1]))

local end_member = redis.call('ZREVRANGEBYSCORE', idx, ARGV[2], '-inf', 'limit', 0, 1)
local end_index = -1
if #end_member == 1 then
    end_index = tonumber(redis.call('ZRANK', idx, end_member[1]))
end

local batch = tonumber(ARGV[3])
for i = start_index, end_index, batch do
    local members = redis.call('ZRANGE', idx, i, math.min(i + batch - 1, end_index), 'withscores')
    for j = 1, #members, 2 do
        members[j], members[j + 1] = members[j + 1], members[j]
    end
    redis.call('ZADD', KEYS[1], unpack(members))
end

if redis.call('EXISTS', KEYS[1]) == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[4])
end

return math.max(0, end_index - start_index + 1)
`

// applyEntityScriptSrc is the atomic save/delete batch for Model entities.
// It clears every index entry recorded for the entity in the registry hash,
// then (unless deleting) writes the entity hash, adds the new index entries,
// and re-records them. Readers never observe a half-updated index.
//
// KEYS = {registry, entity}
// ARGV = {namespace, id, is_delete, data, deleted, words, scores, prefix, suffix}
// where data is a flat [field, value, ...] JSON array, deleted a JSON array
// of field names, words/prefix/suffix JSON arrays of [column, word] pairs,
// and scores a JSON object column -> score.
const applyEntityScriptSrc = `
local registry = KEYS[1]
local row_key = KEYS[2]

local namespace = ARGV[1]
local id = ARGV[2]
local is_delete = tonumber(ARGV[3]) > 0

local changes = 0

-- remove old index data
local idata = redis.call('HGET', registry, id)
if idata then
    idata = cjson.decode(idata)
    while #idata < 4 do
        idata[#idata + 1] = {}
    end
    for _, data in ipairs(idata[1]) do
        redis.call('SREM', namespace .. ':' .. data[1] .. ':' .. data[2], id)
        changes = changes + 1
    end
    for _, col in ipairs(idata[2]) do
        redis.call('ZREM', namespace .. ':' .. col, id)
        changes = changes + 1
    end
    for _, data in ipairs(idata[3]) do
        redis.call('ZREM', namespace .. ':' .. data[1] .. ':pre', data[2] .. '\1' .. id)
        changes = changes + 1
    end
    for _, data in ipairs(idata[4]) do
        redis.call('ZREM', namespace .. ':' .. data[1] .. ':suf', data[2] .. '\1' .. id)
        changes = changes + 1
    end
end

if is_delete then
    redis.call('DEL', row_key)
    redis.call('HDEL', registry, id)
    return changes
end

-- update stored columns
local deleted = cjson.decode(ARGV[5])
if #deleted > 0 then
    redis.call('HDEL', row_key, unpack(deleted))
end
local data = cjson.decode(ARGV[4])
if #data > 0 then
    redis.call('HSET', row_key, unpack(data))
end

-- add new index data
local words = cjson.decode(ARGV[6])
for _, data in ipairs(words) do
    redis.call('SADD', namespace .. ':' .. data[1] .. ':' .. data[2], id)
end

local nscored = {}
for col, score in pairs(cjson.decode(ARGV[7])) do
    redis.call('ZADD', namespace .. ':' .. col, score, id)
    nscored[#nscored + 1] = col
end

local prefix = cjson.decode(ARGV[8])
for _, data in ipairs(prefix) do
    redis.call('ZADD', namespace .. ':' .. data[1] .. ':pre', 0, data[2] .. '\1' .. id)
end

local suffix = cjson.decode(ARGV[9])
for _, data in ipairs(suffix) do
    redis.call('ZADD', namespace .. ':' .. data[1] .. ':suf', 0, data[2] .. '\1' .. id)
end

redis.call('HSET', registry, id, cjson.encode({words, nscored, prefix, suffix}))
return changes + #words + #nscored + #prefix + #suffix
`

var (
	estimateWorkScript = redis.NewScript(estimateWorkScriptSrc)
	affixMatchScript   = redis.NewScript(affixMatchScriptSrc)
	subrangeScript     = redis.NewScript(subrangeScriptSrc)
	applyEntityScript  = redis.NewScript(applyEntityScriptSrc)
)
