package sqlinline

const QBatchJobsEnsureTable = `--sql 9b1f6c2e-47d3-4a8e-b0c5-2e6f81d4a7c3
create table if not exists batch_jobs (
    job_id        text primary key,
    user_id       text not null,
    mode          text not null,
    total_cost    integer not null,
    results_count integer not null,
    duration_ms   bigint,
    created_at    timestamptz not null,
    recorded_at   timestamptz not null default now()
);
`

const QBatchJobsUserIndex = `--sql 5c0e2d7a-1b84-4f69-9e3a-7d52c8f0b146
create index if not exists batch_jobs_user_created_idx
    on batch_jobs (user_id, created_at desc);
`

const QBatchJobInsert = `--sql e41a7b09-6d2c-4c35-8f1e-b93d05a6c872
insert into batch_jobs (job_id, user_id, mode, total_cost, results_count, duration_ms, created_at)
values ($1, $2, $3, $4, $5, $6, $7)
on conflict (job_id) do nothing;
`

const QBatchJobsByUser = `--sql 2d8c4f61-a0b7-4e13-95d2-6f1e3b7c9a04
select job_id, user_id, mode, total_cost, results_count, duration_ms, created_at
from batch_jobs
where user_id = $1
order by created_at desc
limit $2;
`
